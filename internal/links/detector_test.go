package links

import "testing"

func TestDocumentURL(t *testing.T) {
	tests := []struct {
		base, ref, want string
	}{
		{"https://files.example.org/", "actas/2024/acta-01.pdf", "https://files.example.org/actas/2024/acta-01.pdf"},
		{"https://files.example.org", "/actas/acta.pdf", "https://files.example.org/actas/acta.pdf"},
		// Concatenation is opaque: a missing separator is not repaired.
		{"https://files.example.org", "acta.pdf", "https://files.example.orgacta.pdf"},
		{"https://files.example.org/", "", ""},
	}
	for _, tt := range tests {
		if got := DocumentURL(tt.base, tt.ref); got != tt.want {
			t.Errorf("DocumentURL(%q, %q) = %q, want %q", tt.base, tt.ref, got, tt.want)
		}
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name        string
		location    string
		description string
		want        Link
	}{
		{
			name:     "zoom in location",
			location: "https://council.zoom.us/j/123456789",
			want:     Link{URL: "https://council.zoom.us/j/123456789", Service: "Zoom"},
		},
		{
			name:        "known service beats generic url",
			description: "Agenda at https://example.org/agenda, join https://meet.google.com/abc-defg-hij",
			want:        Link{URL: "https://meet.google.com/abc-defg-hij", Service: "Meet"},
		},
		{
			name:        "location wins over description",
			location:    "https://example.org/sala",
			description: "https://meet.google.com/abc-defg-hij",
			want:        Link{URL: "https://example.org/sala", Service: "Meeting"},
		},
		{
			name:     "no link",
			location: "Salón de plenos",
			want:     Link{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.location, tt.description); got != tt.want {
				t.Errorf("Detect = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestService(t *testing.T) {
	if got := Service("https://teams.microsoft.com/l/meetup-join/19%3ameeting"); got != "Teams" {
		t.Errorf("Service = %q, want Teams", got)
	}
	if got := Service("https://example.org"); got != "Meeting" {
		t.Errorf("Service = %q, want Meeting", got)
	}
}
