package version

import "testing"

func TestString(t *testing.T) {
	old := [3]string{Version, Commit, BuildTime}
	defer func() { Version, Commit, BuildTime = old[0], old[1], old[2] }()

	Version, Commit, BuildTime = "1.2.0", "abc1234", "2024-05-01T12:00:00Z"

	if got, want := String(), "1.2.0 (abc1234) built 2024-05-01T12:00:00Z"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if info := Get(); info.Version != "1.2.0" || info.Commit != "abc1234" {
		t.Errorf("Get() = %+v", info)
	}
}
