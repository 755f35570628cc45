package render

import (
	"bytes"
	"html/template"
)

const resumeHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
  body { font-family: Helvetica, Arial, sans-serif; color: #1a1a1a; margin: 40px; }
  h1 { font-size: 24px; margin-bottom: 2px; }
  h2 { font-size: 14px; text-transform: uppercase; letter-spacing: 1px;
       border-bottom: 1px solid #999; padding-bottom: 3px; margin-top: 24px; }
  .contact { font-size: 12px; color: #555; margin-bottom: 16px; }
  .entry { margin-bottom: 12px; }
  .entry-head { font-weight: bold; font-size: 13px; }
  .entry-dates { float: right; font-weight: normal; color: #555; font-size: 12px; }
  ul { margin: 4px 0 0 18px; padding: 0; font-size: 12px; }
  p { font-size: 12px; }
  .skills { font-size: 12px; }
  @page { size: A4; margin: 15mm; }
</style>
</head>
<body>
<h1>{{if .Name}}{{.Name}}{{else}}{{.Title}}{{end}}</h1>
<div class="contact">
  {{- if .Email}}{{.Email}}{{end}}
  {{- if .Phone}} &middot; {{.Phone}}{{end}}
  {{- if .Location}} &middot; {{.Location}}{{end}}
</div>
{{if .Summary}}<h2>Summary</h2><p>{{.Summary}}</p>{{end}}
{{if .Experience}}<h2>Experience</h2>
{{range .Experience}}<div class="entry">
  <div class="entry-head">{{.Role}}{{if and .Role .Company}}, {{end}}{{.Company}}
    <span class="entry-dates">{{.Start}}{{if and .Start .End}} &ndash; {{end}}{{.End}}</span>
  </div>
  {{if .Highlights}}<ul>{{range .Highlights}}<li>{{.}}</li>{{end}}</ul>{{end}}
</div>{{end}}{{end}}
{{if .Education}}<h2>Education</h2>
{{range .Education}}<div class="entry">
  <div class="entry-head">{{.Degree}}{{if and .Degree .School}}, {{end}}{{.School}}
    <span class="entry-dates">{{.Start}}{{if and .Start .End}} &ndash; {{end}}{{.End}}</span>
  </div>
</div>{{end}}{{end}}
{{if .Skills}}<h2>Skills</h2><p class="skills">{{range $i, $s := .Skills}}{{if $i}}, {{end}}{{$s}}{{end}}</p>{{end}}
</body>
</html>`

var resumeTemplate = template.Must(template.New("resume").Parse(resumeHTML))

// RenderHTML produces the HTML page used for PDF printing.
func RenderHTML(doc Document) (string, error) {
	var buf bytes.Buffer
	if err := resumeTemplate.Execute(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}
