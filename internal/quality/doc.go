// Package quality scores a transcript along five axes and decides whether
// another transcription attempt is worth making.
//
// The analyzer is a pure function of its inputs: it performs no I/O, keeps no
// state between calls and returns the same Metrics for the same transcript.
// The overall score is a fixed weighted combination of the five sub-scores
// and is only ever computed here.
package quality
