// Package kickstart parses and generates the configuration text handled by
// kickstart modules.
//
// Kickstart text is written in HCL. Top-level attributes are commands,
// unlabeled top-level blocks are sections and `addon "<name>"` blocks are
// addons:
//
//	lang = "en_US.UTF-8"
//
//	packages {
//	  groups = ["core"]
//	}
//
//	addon "org_fedora_hello_world" {
//	  text = "hi"
//	}
//
// A Specification names the commands, sections and addons a module handles;
// anything else in the text is rejected with a *ParseError. A successful
// parse produces a Data value, the module's configuration blob, which can be
// generated back into text.
package kickstart
