// Package prompt renders decision contexts into model prompts and parses
// model replies back into decisions.
//
// Rendering is a pure function of its inputs: a Renderer holds nothing but
// a parsed text/template, so the same Context always yields the same text.
// Replies are free-form; ExtractJSON scans them for the first balanced JSON
// object whose fields satisfy a small JSON-schema subset.
package prompt
