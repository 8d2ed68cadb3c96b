package dashboard

import (
	"time"

	"github.com/rickgao/theta-pulse/internal/poller"
)

// View is the display form of a poller state. Data keeps the last good
// value; Stale marks it as older than the last failed refresh.
type View[T any] struct {
	Data       T          `json:"data"`
	Ready      bool       `json:"ready"`
	Refreshing bool       `json:"refreshing"`
	Stale      bool       `json:"stale"`
	Error      string     `json:"error,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

func viewOf[T any](st poller.State[T]) View[T] {
	v := View[T]{
		Data:       st.Result,
		Ready:      st.HasResult,
		Refreshing: st.Refreshing,
		Stale:      st.Stale(),
	}
	if st.Err != nil {
		v.Error = st.Err.Error()
	}
	if !st.UpdatedAt.IsZero() {
		t := st.UpdatedAt
		v.UpdatedAt = &t
	}
	return v
}
