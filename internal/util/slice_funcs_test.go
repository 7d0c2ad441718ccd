package util_test

import (
	"strconv"
	"testing"

	"github.com/auto-dns/harbinger/internal/util"
	"github.com/stretchr/testify/assert"
)

func TestMap(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"1", "2"}, util.Map([]int{1, 2}, strconv.Itoa))
	assert.Empty(t, util.Map([]int(nil), strconv.Itoa))
}

func TestFilter(t *testing.T) {
	t.Parallel()

	got := util.Filter([]int{1, 2, 3, 4}, func(v int) bool { return v%2 == 0 })

	assert.Equal(t, []int{2, 4}, got)
}

func TestLast(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		give  []string
		giveN int
		want  []string
	}{
		{name: "shorter than n", give: []string{"a"}, giveN: 3, want: []string{"a"}},
		{name: "trims head", give: []string{"a", "b", "c"}, giveN: 2, want: []string{"b", "c"}},
		{name: "zero", give: []string{"a"}, giveN: 0, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, util.Last(tt.give, tt.giveN))
		})
	}
}
