package http

import (
	"html/template"

	"github.com/dustin/go-humanize"

	"github.com/donmikel/uploadform/applications/uploader/domain"
)

type formView struct {
	FileName  string
	FileSize  string
	Uploading bool
	CanSubmit bool
	Outcome   *domain.Outcome
}

func newFormView(s domain.Snapshot) formView {
	v := formView{
		Uploading: s.State == domain.InFlight,
		CanSubmit: s.CanSubmit(),
		Outcome:   s.Outcome,
	}
	if s.File != nil {
		v.FileName = s.File.Name()
		v.FileSize = humanize.Bytes(uint64(s.File.Size()))
	}

	return v
}

var formTemplate = template.Must(template.New("form").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>File Upload</title>
{{- if .Uploading}}
<meta http-equiv="refresh" content="1">
{{- end}}
</head>
<body>
<main>
  <h2>File Upload</h2>
  <p>Upload your file to the configured endpoint</p>

  <form id="select" action="/file" method="post" enctype="multipart/form-data">
    <input type="file" name="file" id="file-upload" onchange="this.form.submit()">
    <noscript><button type="submit">Choose File</button></noscript>
  </form>
  {{- if .FileName}}
  <p class="selected">Selected: {{.FileName}} ({{.FileSize}})</p>
  {{- end}}

  <form id="submit" action="/submit" method="post">
    <button type="submit"{{if not .CanSubmit}} disabled{{end}}>
      {{- if .Uploading}}Uploading...{{else}}Upload File{{end -}}
    </button>
  </form>

  {{- with .Outcome}}
  <div class="status {{.Type}}">{{.Message}}</div>
  {{- end}}
</main>
</body>
</html>
`))
