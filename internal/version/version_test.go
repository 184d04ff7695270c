package version

import "testing"

func TestBuild(t *testing.T) {
	tests := []struct {
		name    string
		build   Build
		want    string
		wantDev bool
	}{
		{
			name:    "unstamped",
			build:   Build{Version: "dev", Commit: "unknown", Date: "unknown"},
			want:    "version=dev commit=unknown date=unknown",
			wantDev: true,
		},
		{
			name:  "release",
			build: Build{Version: "v1.4.0", Commit: "3f2a9c1", Date: "2026-03-01"},
			want:  "version=v1.4.0 commit=3f2a9c1 date=2026-03-01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.build.String(); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
			if tt.build.Dev() != tt.wantDev {
				t.Fatalf("expected dev=%v", tt.wantDev)
			}
			fields := tt.build.Fields()
			if fields["version"] != tt.build.Version || fields["commit"] != tt.build.Commit || fields["build_date"] != tt.build.Date {
				t.Fatalf("unexpected log fields: %v", fields)
			}
		})
	}
}

func TestCurrentMatchesLinkerVariables(t *testing.T) {
	build := Current()
	if build.Version != GetVersion() || build.Commit != commit || build.Date != date {
		t.Fatalf("unexpected build %+v", build)
	}
}
