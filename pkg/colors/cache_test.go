package colors

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func TestColorAssignmentAndEviction(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), CacheFile))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	clock := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	if got := c.ColorID(""); got != noCustomerID {
		t.Errorf("Expected %s for no customer, got %s", noCustomerID, got)
	}

	first := c.ColorID("Contoso")
	if again := c.ColorID("Contoso"); again != first {
		t.Errorf("Expected stable colour %s, got %s", first, again)
	}

	seen := map[string]bool{first: true}
	for i := 1; i < 10; i++ {
		id := c.ColorID(fmt.Sprintf("Customer %d", i))
		if id == noCustomerID {
			t.Fatalf("Customer colour must not reuse %s", noCustomerID)
		}
		if seen[id] {
			t.Fatalf("Colour %s assigned twice before exhaustion", id)
		}
		seen[id] = true
	}

	// All ten colours are taken; "Customer 1" is now the least recently used.
	c.ColorID("Contoso")
	recycled := c.ColorID("Fabrikam")
	if _, ok := c.Customers["Customer 1"]; ok {
		t.Error("Expected least recently used customer to be evicted")
	}
	if recycled == first {
		t.Errorf("Recently used Contoso colour should not be recycled")
	}

	if err := c.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	reopened, err := Open(c.Path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if got := reopened.ColorID("Fabrikam"); got != recycled {
		t.Errorf("Expected persisted colour %s, got %s", recycled, got)
	}
}
