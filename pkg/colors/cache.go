package colors

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// CacheFile is the default file name inside the config directory.
	CacheFile = "customer_colors.json"

	// Google Calendar event colours 1..11; 8 (graphite) is kept for
	// tasks without a customer.
	firstColor   = 1
	lastColor    = 11
	noCustomerID = "8"
)

type customerColor struct {
	ColorID  string    `json:"color_id"`
	LastUsed time.Time `json:"last_used"`
}

// Cache hands each customer a stable calendar colour. When all colours are
// taken the least recently used customer gives up its colour.
type Cache struct {
	Path      string
	Customers map[string]*customerColor
	now       func() time.Time
	dirty     bool
}

// Open loads the cache at path, starting empty if the file does not exist.
func Open(path string) (*Cache, error) {
	c := &Cache{
		Path:      path,
		Customers: make(map[string]*customerColor),
		now:       time.Now,
	}
	if _, err := os.Stat(path); err == nil {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if err := json.NewDecoder(f).Decode(&c.Customers); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Save writes the cache if any assignment changed.
func (c *Cache) Save() error {
	if !c.dirty {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0700); err != nil {
		return err
	}
	f, err := os.Create(c.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(c.Customers); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// ColorID returns the calendar colour for customer, assigning one if needed.
func (c *Cache) ColorID(customer string) string {
	if customer == "" {
		return noCustomerID
	}
	if state, ok := c.Customers[customer]; ok {
		state.LastUsed = c.now()
		c.dirty = true
		return state.ColorID
	}
	return c.assign(customer)
}

func (c *Cache) assign(customer string) string {
	used := make(map[string]bool)
	for _, s := range c.Customers {
		used[s.ColorID] = true
	}
	for i := firstColor; i <= lastColor; i++ {
		id := strconv.Itoa(i)
		if id == noCustomerID || used[id] {
			continue
		}
		c.Customers[customer] = &customerColor{ColorID: id, LastUsed: c.now()}
		c.dirty = true
		return id
	}

	var oldest string
	var oldestTime time.Time
	for name, s := range c.Customers {
		if oldest == "" || s.LastUsed.Before(oldestTime) {
			oldest, oldestTime = name, s.LastUsed
		}
	}
	recycled := c.Customers[oldest].ColorID
	delete(c.Customers, oldest)
	c.Customers[customer] = &customerColor{ColorID: recycled, LastUsed: c.now()}
	c.dirty = true
	return recycled
}
