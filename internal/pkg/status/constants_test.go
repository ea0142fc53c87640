package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		name string
		st   Status
		want string
	}{
		{st: Pending, want: "pending"},
		{st: Processing, want: "processing"},
		{st: Analyzing, want: "analyzing"},
		{st: Completed, want: "completed"},
		{st: Failed, want: "failed"},
		{st: 0, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.st.String(); got != tt.want {
				t.Errorf("Status.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFrom(t *testing.T) {
	tests := []struct {
		name string
		args string
		want Status
	}{
		{args: "completed", want: Completed},
		{args: "olia", want: 0},
		{args: "COMPLETED", want: 0},
		{args: "processing", want: Processing},
		{args: "pending", want: Pending},
		{args: "failed", want: Failed},
		{args: "analyzing", want: Analyzing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := From(tt.args); got != tt.want {
				t.Errorf("From() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, Completed.Terminal())
	assert.True(t, Failed.Terminal())
	assert.False(t, Pending.Terminal())
	assert.False(t, Processing.Terminal())
	assert.False(t, Analyzing.Terminal())
}

func TestCanMove(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{from: Pending, to: Processing, want: true},
		{from: Processing, to: Analyzing, want: true},
		{from: Processing, to: Failed, want: true},
		{from: Analyzing, to: Completed, want: true},
		{from: Analyzing, to: Failed, want: true},
		{from: Completed, to: Completed, want: true},
		{from: Processing, to: Processing, want: true},
		{from: Pending, to: Completed, want: false},
		{from: Pending, to: Failed, want: false},
		{from: Analyzing, to: Processing, want: false},
		{from: Completed, to: Processing, want: false},
		{from: Failed, to: Completed, want: false},
		{from: Completed, to: Failed, want: false},
		{from: 0, to: Pending, want: false},
		{from: Pending, to: 10, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, CanMove(tt.from, tt.to))
		})
	}
}

func TestAllowedFrom(t *testing.T) {
	assert.Equal(t, []Status{Processing, Analyzing, Failed}, AllowedFrom(Failed))
	assert.Equal(t, []Status{Analyzing, Completed}, AllowedFrom(Completed))
	assert.Equal(t, []Status{Pending, Processing}, AllowedFrom(Processing))
	assert.Equal(t, []string{"pending", "processing"}, Names(AllowedFrom(Processing)))
}
