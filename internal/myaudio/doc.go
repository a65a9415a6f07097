// Package myaudio turns audio from files and capture devices into the
// fixed-length 16-bit mono frames a wake word engine consumes.
//
// Frames are assembled in a ring buffer so device callbacks never block on
// the consumer. File input is decoded, downmixed, resampled to the engine
// sample rate and zero-padded at the end so every frame has full length.
package myaudio
