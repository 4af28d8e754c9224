package models

import (
	"fmt"
	"math"
	"time"
)

// Role identifies what a track is used for within one synchronization.
type Role string

const (
	RoleContent Role = "content" // material being corrected
	RoleTiming  Role = "timing"  // reference whose timing is applied
	RoleSynced  Role = "synced"  // intermediate file after start correction
	RoleFinal   Role = "final"   // intermediate file after end correction
)

// AudioTrack is a measured audio file.
//
// Duration is always derived from SampleCount and SampleRate so the two can never disagree.
type AudioTrack struct {
	Path        string
	Role        Role
	SampleRate  int
	SampleCount int64
}

// Duration returns the track length in seconds.
func (t AudioTrack) Duration() float64 {
	if t.SampleRate <= 0 {
		return 0
	}
	return float64(t.SampleCount) / float64(t.SampleRate)
}

// Length returns [AudioTrack.Duration] as a [time.Duration].
func (t AudioTrack) Length() time.Duration {
	return time.Duration(t.Duration() * float64(time.Second))
}

// Validate checks that the measurement is usable.
func (t AudioTrack) Validate() error {
	if t.Path == "" {
		return fmt.Errorf("track path is required")
	}
	if t.SampleRate <= 0 {
		return fmt.Errorf("track %s has invalid sample rate %d", t.Path, t.SampleRate)
	}
	if t.SampleCount < 0 {
		return fmt.Errorf("track %s has negative sample count", t.Path)
	}
	return nil
}

// AlignmentOffset is the intro difference between two tracks.
//
// Seconds is never negative; Longer names the track whose leading silence is longer.
type AlignmentOffset struct {
	Seconds float64
	Longer  string
	IntroA  float64 // leading silence of the first input, in seconds
	IntroB  float64 // leading silence of the second input, in seconds
}

// Samples converts the offset to a sample count at rate, rounding to the nearest sample.
func (o AlignmentOffset) Samples(rate int) int64 {
	return SecondsToSamples(o.Seconds, rate)
}

// SecondsToSamples rounds seconds*rate to the nearest whole sample.
func SecondsToSamples(seconds float64, rate int) int64 {
	return int64(math.Round(seconds * float64(rate)))
}
