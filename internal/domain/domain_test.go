package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThreadKey_OrderIndependent(t *testing.T) {
	pairs := [][2]string{
		{"coach", "client"},
		{"65f1a2", "65f1a3"},
		{"same", "same"},
		{"", "x"},
	}
	for _, p := range pairs {
		assert.Equal(t, ThreadKey(p[0], p[1]), ThreadKey(p[1], p[0]))
	}
	assert.Equal(t, "a_b", ThreadKey("b", "a"))
}

func TestThread_HasParticipant(t *testing.T) {
	th := Thread{Participants: []string{"a", "b"}}
	assert.True(t, th.HasParticipant("a"))
	assert.False(t, th.HasParticipant("c"))
}

func TestCheck_EditableAt(t *testing.T) {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	c := Check{CreatedAt: created}

	assert.True(t, c.EditableAt(created.Add(119*time.Minute), 2*time.Hour))
	assert.False(t, c.EditableAt(created.Add(2*time.Hour), 2*time.Hour))
}

func TestPhotos_ValidateAndMerge(t *testing.T) {
	assert.NoError(t, Photos{PhotoFront: "k1", PhotoBack: "k2"}.Validate())
	assert.Error(t, Photos{"top": "k"}.Validate())
	assert.Error(t, Photos{PhotoLeft: ""}.Validate())

	merged := Photos{PhotoFront: "old", PhotoLeft: "l"}.Merge(Photos{PhotoFront: "new", PhotoRight: ""})
	assert.Equal(t, Photos{PhotoFront: "new", PhotoLeft: "l"}, merged)
}

func TestClient_SetName(t *testing.T) {
	var c Client
	c.SetName("  Mario Rossi ")
	assert.Equal(t, "Mario Rossi", c.Name)
	assert.Equal(t, "mario rossi", c.NameLowercase)
}
