package httpapi

import (
	"html/template"
	"net/http"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

var indexTmpl = template.Must(template.New("index").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>{{.Source}}→{{.Target}} Translator API</title></head>
<body>
<h1>{{.Source}}→{{.Target}} Translator API</h1>
<p>POST JSON to <code>/translate</code>, for example:</p>
<pre>curl -X POST -H "Content-Type: application/json" -d '{"text":"{{.Example}}"}' /translate</pre>
<p>Response: <code>{"input": "...", "translation": "..."}</code></p>
<p>Health check: <a href="/health">/health</a></p>
</body>
</html>
`))

// examples of source text per language, shown on the index page.
var examples = map[string]string{
	"si": "කසළ රෝගය",
	"ta": "வணக்கம்",
	"en": "Hello",
}

type indexData struct {
	Source  string
	Target  string
	Example string
}

// languageName renders a tokenizer language code such as "si_LK" in English ("Sinhala").
func languageName(code string) string {
	base, err := languageBase(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(base); name != "" {
		return name
	}
	return code
}

func languageBase(code string) (language.Base, error) {
	return language.ParseBase(strings.SplitN(code, "_", 2)[0])
}

func serveIndex(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		src, tgt := svc.Languages()
		d := indexData{Source: languageName(src), Target: languageName(tgt), Example: "..."}
		if base, err := languageBase(src); err == nil {
			if ex, ok := examples[base.String()]; ok {
				d.Example = ex
			}
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := indexTmpl.Execute(w, d); err != nil {
			zlog.Error().Err(err).Msg("render index")
		}
	}
}
