// Package validation checks that an agent result describes sound output.
//
// Checks are chosen by agent kind. Video results must point at an existing
// output file above a minimum size and, when probing is enabled, report a
// positive duration, frame rate and width. Storyboard results must point at an
// image above a minimum size that decodes with positive dimensions. Every other
// kind validates permissively. A result carrying an error never validates.
//
// Validate never returns an error and never panics: anything that prevents a
// check from completing counts as a failed validation.
package validation
