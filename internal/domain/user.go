package domain

import "time"

// User is a registered practice participant.
//
// Streak counts consecutive correct first-class resolutions and is only
// mutated through BumpStreak/ResetStreak so the lifecycle rules stay in
// one place.
type User struct {
	ID              int64
	ChatID          int64
	Username        string
	Streak          int
	QuestionsPerDay int
	CreatedAt       time.Time
}

// BumpStreak records one correct resolution.
func (u *User) BumpStreak() { u.Streak++ }

// ResetStreak zeroes the streak after any expiry-causing failure.
func (u *User) ResetStreak() { u.Streak = 0 }
