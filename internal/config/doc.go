// Package config loads and validates the YAML application configuration.
//
// Every section validates itself so startup fails fast on a bad file,
// with one deliberate exception: missing transcription credentials are
// legal, because the session controller reports the unconfigured state
// to the user at dictation time instead.
package config
