package vcf

import (
	"strings"
	"testing"

	"github.com/nexora/vcfpool/models"
)

func TestBuild(t *testing.T) {
	participants := []models.Participant{
		{Name: "Ada", Phone: "+2348031234567"},
		{Name: "Bayo", Phone: "+2348039876543"},
	}

	got := Build("Tech Meetup Lagos", participants)

	if n := strings.Count(got, "BEGIN:VCARD\r\n"); n != 2 {
		t.Errorf("BEGIN:VCARD count = %d, want 2", n)
	}
	if n := strings.Count(got, "END:VCARD\r\n"); n != 2 {
		t.Errorf("END:VCARD count = %d, want 2", n)
	}

	wantLines := []string{
		"VERSION:3.0\r\n",
		"FN:NexOra Ada\r\n",
		"N:Ada;;;;\r\n",
		"ORG:Tech Meetup Lagos\r\n",
		"TEL;TYPE=CELL:+2348031234567\r\n",
		"FN:NexOra Bayo\r\n",
		"TEL;TYPE=CELL:+2348039876543\r\n",
	}
	for _, line := range wantLines {
		if !strings.Contains(got, line) {
			t.Errorf("output missing %q:\n%s", line, got)
		}
	}
}

func TestBuildEmpty(t *testing.T) {
	if got := Build("Empty Pool", nil); got != "" {
		t.Errorf("Build with no participants = %q, want empty", got)
	}
}

func TestBuildEscapesSpecialChars(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"semicolon", "Ada; CEO", `FN:NexOra Ada\; CEO`},
		{"comma", "Ada, Jr.", `FN:NexOra Ada\, Jr.`},
		{"backslash", `Ada\Bayo`, `FN:NexOra Ada\\Bayo`},
		{"newline", "Ada\nBayo", `FN:NexOra Ada\nBayo`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Build("Pool", []models.Participant{{Name: tt.in, Phone: "+2348031234567"}})
			if !strings.Contains(got, tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, got)
			}
		})
	}
}

func TestFilename(t *testing.T) {
	if got := Filename("A1B2C3D4"); got != "NexOra_Pool_A1B2C3D4.vcf" {
		t.Errorf("Filename = %q", got)
	}
}
