// Package document defines the parsed document model consumed by the chunker
// and a file based parser for plain text, markdown and JSONL segment files.
//
// Parsing itself is a capability: any Parser that yields labelled segments can
// feed the pipeline. Only segments labelled LabelText count as body text.
package document
