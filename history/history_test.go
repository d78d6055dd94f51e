package history

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion/model"
)

func user(s string) model.Message      { return model.Message{Role: model.RoleUser, Content: s} }
func assistant(s string) model.Message { return model.Message{Role: model.RoleAssistant, Content: s} }

var ignoreTime = cmpopts.IgnoreFields(model.Message{}, "Timestamp")

func TestEnsureSystemPrependsOnce(t *testing.T) {
	c := New(10)
	c.EnsureSystem("be nice")
	c.EnsureSystem("ignored")
	require.Equal(t, 1, c.Len())
	assert.Equal(t, "be nice", c.Messages()[0].Content)

	headless := New(10)
	headless.Append(user("hi"))
	headless.EnsureSystem("sys")
	want := []model.Message{{Role: model.RoleSystem, Content: "sys"}, user("hi")}
	if diff := cmp.Diff(want, headless.Messages(), ignoreTime); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestPruneKeepsSystemAndNewest(t *testing.T) {
	c := New(4)
	c.EnsureSystem("sys")
	c.Append(user("u1"), assistant("a1"))
	c.Append(user("u2"), assistant("a2"))

	want := []model.Message{
		{Role: model.RoleSystem, Content: "sys"},
		assistant("a1"),
		user("u2"),
		assistant("a2"),
	}
	if diff := cmp.Diff(want, c.Messages(), ignoreTime); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestPruneInvariantAcrossCycles(t *testing.T) {
	for max := 1; max <= 6; max++ {
		c := New(max)
		for cycle := 0; cycle < 20; cycle++ {
			c.EnsureSystem("sys")
			c.Append(user(fmt.Sprint("u", cycle)), assistant(fmt.Sprint("a", cycle)))

			require.LessOrEqual(t, c.Len(), max, "max=%d cycle=%d", max, cycle)
			require.Equal(t, model.RoleSystem, c.Messages()[0].Role, "max=%d cycle=%d", max, cycle)
		}
		if max >= 3 {
			msgs := c.Messages()
			assert.Equal(t, "a19", msgs[len(msgs)-1].Content)
			assert.Equal(t, "u19", msgs[len(msgs)-2].Content)
		}
	}
}

func TestPruneWithoutSystemHead(t *testing.T) {
	c := New(2)
	c.Append(user("1"), user("2"), user("3"))
	want := []model.Message{user("2"), user("3")}
	if diff := cmp.Diff(want, c.Messages(), ignoreTime); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestSetMaxClampsAndPrunes(t *testing.T) {
	c := New(0)
	assert.Equal(t, 1, c.Max())

	c.SetMax(5)
	c.EnsureSystem("sys")
	c.Append(user("u"), assistant("a"))
	c.SetMax(2)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, "a", c.Messages()[1].Content)
}

func TestSyncAnchorResets(t *testing.T) {
	c := New(10)
	assert.False(t, c.SyncAnchor(""))

	c.EnsureSystem("sys")
	c.Append(user("u"))
	assert.True(t, c.SyncAnchor("/src/main.go"))
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, "/src/main.go", c.Anchor())

	c.EnsureSystem("sys")
	assert.False(t, c.SyncAnchor("/src/main.go"))
	assert.Equal(t, 1, c.Len())

	c.Reset()
	assert.Equal(t, "", c.Anchor())
	assert.Equal(t, 0, c.Len())
}

func TestMessagesReturnsCopy(t *testing.T) {
	c := New(3)
	c.Append(user("x"))
	msgs := c.Messages()
	msgs[0].Content = "mutated"
	assert.Equal(t, "x", c.Messages()[0].Content)
}
