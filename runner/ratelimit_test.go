/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package runner

import (
	"testing"
	"time"
)

func TestRateLimiterUnderLimit(t *testing.T) {
	rl := NewRateLimiter(5, 60)

	for i := 0; i < 5; i++ {
		if waited := rl.Wait(); waited != 0 {
			t.Errorf("request %d waited %v, want no wait", i, waited)
		}
	}

	if avail := rl.Available(); avail != 0 {
		t.Errorf("Available = %d, want 0", avail)
	}
}

func TestRateLimiterBlocksAtLimit(t *testing.T) {
	rl := NewRateLimiter(2, 1) // 2 requests per second

	rl.Wait()
	rl.Wait()

	start := time.Now()
	waited := rl.Wait()
	elapsed := time.Since(start)

	if waited == 0 {
		t.Error("third request should have waited")
	}
	if elapsed > 3*time.Second {
		t.Errorf("waited %v, expected roughly one second", elapsed)
	}
}

func TestRateLimiterAvailable(t *testing.T) {
	rl := NewRateLimiter(3, 60)

	if avail := rl.Available(); avail != 3 {
		t.Errorf("Available = %d, want 3", avail)
	}
	rl.Wait()
	if avail := rl.Available(); avail != 2 {
		t.Errorf("Available = %d, want 2", avail)
	}
}
