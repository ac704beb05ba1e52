// Package phonetic provides orthographic approximations of English word
// sounds: normalization, syllable counting, rime extraction and rhyme
// classification.
//
// Everything here works on letters, not phonemes. Words are reduced to the
// letters a-z before any rule runs; the vowel set is a, e, i, o, u and y.
// All functions are total over arbitrary input and never return errors.
package phonetic
