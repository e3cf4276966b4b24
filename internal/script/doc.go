// Package script turns raw script text into an ordered list of scenes.
//
// Two grammars are supported. The text grammar uses optional "Title:" and
// "Duration:" headers followed by "[mm:ss]" scene headers whose body lines
// are prefixed with "Narration:", "Visual:" or "Text:" (unprefixed lines are
// narration). The YAML grammar carries the same fields as a document with a
// "scenes" list. Both grammars share one builder that derives scene
// durations from consecutive timestamps so the durations always sum to the
// script's total duration.
package script
