// Package file loads corpus sections and evaluation cases from YAML or JSON
// files and watches the corpus file for edits.
//
// A corpus file holds a top-level "sections" list:
//
//	sections:
//	  - id: rules.grappling
//	    category: rules
//	    title: Grappling
//	    text: When you want to grab a creature...
//
// JSON documents with the same shape are accepted as well, and Markdown
// files (.md) are split into one section per heading.
package file
