package cache

import (
	"testing"
	"time"
)

func TestEntry_Age(t *testing.T) {
	entry := &Entry{
		Body:       []byte(`{"accounts":[]}`),
		StatusCode: 200,
		StoredAt:   time.Now().Add(-2 * time.Minute),
	}

	age := entry.Age()
	if age < time.Minute || age > 3*time.Minute {
		t.Errorf("Age() = %v, want ~2m", age)
	}
}
