package extract

import "testing"

func TestDatasetPage(t *testing.T) {
	const pageURL = "https://data.example.gov/datasets/view/9f2c4e1a-0b3d-4f6e-8a7b-1c2d3e4f5a6b"

	tests := []struct {
		name      string
		html      string
		wantTitle string
		wantDesc  string
	}{
		{
			name: "open graph tags win",
			html: `<html><head>
				<meta property="og:title" content="Registered Commercial Licenses">
				<meta property="og:description" content="Monthly count of active commercial licenses.">
				<title>portal</title>
			</head><body><h1>something else</h1></body></html>`,
			wantTitle: "Registered Commercial Licenses",
			wantDesc:  "Monthly count of active commercial licenses.",
		},
		{
			name: "h1 and meta description fallback",
			html: `<html><head>
				<meta name="description" content="Daily air quality readings by station.">
			</head><body><h1> Air Quality Index </h1><p>table here</p></body></html>`,
			wantTitle: "Air Quality Index",
			wantDesc:  "Daily air quality readings by station.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DatasetPage(tt.html, pageURL)
			if got.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", got.Title, tt.wantTitle)
			}
			if got.Description != tt.wantDesc {
				t.Errorf("Description = %q, want %q", got.Description, tt.wantDesc)
			}
		})
	}
}

func TestDatasetPageTitleTagOnly(t *testing.T) {
	html := `<html><head><title>Vehicle Registrations</title></head><body><p>rows</p></body></html>`
	got := DatasetPage(html, "https://data.example.gov/datasets/view/x")
	if got.Title != "Vehicle Registrations" {
		t.Errorf("Title = %q", got.Title)
	}
}

func TestDatasetPageEmptyMarkup(t *testing.T) {
	got := DatasetPage("<html><body></body></html>", "https://data.example.gov/x")
	if got.Title != "" {
		t.Errorf("empty page should yield no title, got %q", got.Title)
	}
}
