package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinWindow(t *testing.T) {
	rl := NewMessageRateLimiter(3, time.Minute, time.Minute)
	defer rl.Close()

	for i := 0; i < 3; i++ {
		if !rl.Allow("applicant-1") {
			t.Fatalf("message %d within limit must be allowed", i+1)
		}
	}

	if rl.Allow("applicant-1") {
		t.Fatal("message over limit must be rejected")
	}

	// Cooldown sırasında hiçbir mesaj geçmez
	if rl.Allow("applicant-1") {
		t.Error("messages during cooldown must be rejected")
	}

	if secs := rl.CooldownSeconds("applicant-1"); secs < 1 {
		t.Errorf("expected positive Retry-After during cooldown, got %d", secs)
	}
}

func TestParticipantsAreIndependent(t *testing.T) {
	rl := NewMessageRateLimiter(1, time.Minute, time.Minute)
	defer rl.Close()

	if !rl.Allow("applicant-1") {
		t.Fatal("first message must be allowed")
	}
	rl.Allow("applicant-1") // limit aşıldı, cooldown başladı

	if !rl.Allow("recruiter-1") {
		t.Error("one participant's cooldown must not affect another")
	}
	if secs := rl.CooldownSeconds("recruiter-1"); secs != 0 {
		t.Errorf("expected no cooldown for clean participant, got %d", secs)
	}
}

func TestCooldownExpires(t *testing.T) {
	rl := NewMessageRateLimiter(1, 10*time.Millisecond, 20*time.Millisecond)
	defer rl.Close()

	rl.Allow("applicant-1")
	if rl.Allow("applicant-1") {
		t.Fatal("second message must trigger cooldown")
	}

	time.Sleep(30 * time.Millisecond)

	if !rl.Allow("applicant-1") {
		t.Error("cooldown expiry must reset the window")
	}
	if secs := rl.CooldownSeconds("applicant-1"); secs != 0 {
		t.Errorf("expected no cooldown after reset, got %d", secs)
	}
}

func TestWindowResets(t *testing.T) {
	rl := NewMessageRateLimiter(2, 10*time.Millisecond, time.Minute)
	defer rl.Close()

	rl.Allow("applicant-1")
	rl.Allow("applicant-1")

	time.Sleep(20 * time.Millisecond)

	// Pencere doldu, cooldown tetiklenmeden yeni pencere açılır
	if !rl.Allow("applicant-1") {
		t.Error("expired window must allow fresh messages")
	}
}
