package visualization

import "testing"

func TestBrowserCommand(t *testing.T) {
	tests := []struct {
		goos    string
		name    string
		wantErr bool
	}{
		{"linux", "xdg-open", false},
		{"darwin", "open", false},
		{"windows", "rundll32", false},
		{"plan9", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			name, args, err := browserCommand(tt.goos, "raster.html")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if name != tt.name {
				t.Errorf("name = %q, want %q", name, tt.name)
			}
			if !tt.wantErr && args[len(args)-1] != "raster.html" {
				t.Errorf("target should be the last argument, got %v", args)
			}
		})
	}
}
