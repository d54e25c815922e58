// Package audio provides alarm and white noise playback for wakepid.
// The Coordinator owns all playback state; Backend implementations drive
// either real audio hardware or an in-memory simulation.
package audio
