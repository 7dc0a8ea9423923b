package imagecache

import (
	"fmt"
	"sync"
	"testing"
)

func TestCache_SetGetDelete(t *testing.T) {
	c := New()
	c.SetInput("a", "in-a")
	c.SetOutput("a", "out-a")
	c.SetInput("b", "in-b")

	if v, ok := c.Get(Input, "a"); !ok || v != "in-a" {
		t.Errorf("Get(Input, a) = %q, %v", v, ok)
	}
	if v, ok := c.Get(Output, "a"); !ok || v != "out-a" {
		t.Errorf("Get(Output, a) = %q, %v", v, ok)
	}
	if _, ok := c.Get(Output, "b"); ok {
		t.Error("b has no output yet")
	}
	if _, ok := c.Get(Input, "missing"); ok {
		t.Error("missing id should be absent")
	}

	c.Delete("a")
	if _, ok := c.Get(Input, "a"); ok {
		t.Error("input should be gone after Delete")
	}
	if _, ok := c.Get(Output, "a"); ok {
		t.Error("output should be gone after Delete")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", c.Len())
	}
}

func TestCache_Load(t *testing.T) {
	c := New()
	c.SetInput("live", "x")
	c.Load(map[string]string{"a": "in-a", "b": "in-b"}, map[string]string{"a": "out-a", "c": "out-c"})

	want := []string{"a", "b", "c", "live"}
	got := c.IDs()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("IDs() = %v, want %v", got, want)
	}
	if v, _ := c.Get(Output, "c"); v != "out-c" {
		t.Errorf("output c = %q", v)
	}
}

func TestCache_ConcurrentUse(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("p%d", i)
			c.SetInput(id, "in")
			c.SetOutput(id, "out")
			c.Get(Output, id)
			if i%2 == 0 {
				c.Delete(id)
			}
		}(i)
	}
	wg.Wait()
	if c.Len() != 10 {
		t.Errorf("Len() = %d, want 10", c.Len())
	}
}
