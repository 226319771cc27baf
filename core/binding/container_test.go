package binding

import (
	"errors"
	"testing"
)

func TestBindAndProvide(t *testing.T) {
	c := New()
	c.Bind("greeting", "hello")

	got, err := c.Provide("greeting")
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello" {
		t.Errorf("Provide = %v", got)
	}
}

func TestUnresolvedName(t *testing.T) {
	c := New()
	_, err := c.Provide("missing")
	var ue *UnresolvedError
	if !errors.As(err, &ue) || ue.Name != "missing" {
		t.Fatalf("err = %v, want UnresolvedError{missing}", err)
	}
}

func TestFactoryRunsEveryResolution(t *testing.T) {
	c := New()
	calls := 0
	c.BindFactory("counter", func(c *Container) (any, error) {
		calls++
		return calls, nil
	})

	c.Provide("counter")
	got, _ := c.Provide("counter")
	if got != 2 || calls != 2 {
		t.Errorf("got=%v calls=%d, want fresh build per resolution", got, calls)
	}
}

func TestSharedFactoryBuildsOnce(t *testing.T) {
	c := New()
	calls := 0
	c.BindShared("db", func(c *Container) (any, error) {
		calls++
		return &struct{ n int }{calls}, nil
	})

	a, _ := c.Provide("db")
	b, _ := c.Provide("db")
	if a != b || calls != 1 {
		t.Errorf("shared binding rebuilt: calls=%d", calls)
	}

	// Child scopes see the same shared instance.
	child := c.Scope()
	d, _ := child.Provide("db")
	if d != a {
		t.Error("child scope got a different shared instance")
	}
}

func TestScopeShadowsParent(t *testing.T) {
	parent := New()
	parent.Bind("mode", "app")

	child := parent.Scope()
	child.Bind("mode", "request")

	if got, _ := child.Provide("mode"); got != "request" {
		t.Errorf("child mode = %v", got)
	}
	if got, _ := parent.Provide("mode"); got != "app" {
		t.Errorf("parent mode = %v", got)
	}

	// Names bound only on the parent still resolve from the child.
	parent.Bind("base", 1)
	if got, _ := child.Provide("base"); got != 1 {
		t.Errorf("fallback = %v", got)
	}
}

func TestFactoryResolvesAgainstOriginScope(t *testing.T) {
	parent := New()
	parent.Bind("suffix", "!")
	parent.BindFactory("message", func(c *Container) (any, error) {
		suffix, err := As[string](c, "suffix")
		if err != nil {
			return nil, err
		}
		return "hi" + suffix, nil
	})

	child := parent.Scope()
	child.Bind("suffix", "?")

	// The parent-bound factory must see the child's override.
	got, err := child.Provide("message")
	if err != nil {
		t.Fatal(err)
	}
	if got != "hi?" {
		t.Errorf("message = %v, want hi?", got)
	}
}

func TestAsTypeMismatch(t *testing.T) {
	c := New()
	c.Bind("n", 42)

	if _, err := As[string](c, "n"); err == nil {
		t.Error("type mismatch not reported")
	}
	n, err := As[int](c, "n")
	if err != nil || n != 42 {
		t.Errorf("As[int] = %v, %v", n, err)
	}
}

func TestRebindReplaces(t *testing.T) {
	c := New()
	c.BindShared("x", func(c *Container) (any, error) { return 1, nil })
	c.Provide("x")
	c.Bind("x", 2)

	if got, _ := c.Provide("x"); got != 2 {
		t.Errorf("rebind ignored: %v", got)
	}
}
