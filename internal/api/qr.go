package api

import (
	"bytes"
	"encoding/base64"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/mylstore/wa-relay/internal/wa"
)

var qrPageTmpl = template.Must(template.New("qr").Parse(`<!DOCTYPE html>
<html>
<head>
<title>WhatsApp Relay</title>
{{if .Refresh}}<meta http-equiv="refresh" content="2">{{end}}
<style>body{font-family:sans-serif;text-align:center;padding-top:60px}</style>
</head>
<body>
{{if .Connected}}
<h1>&#9989; Connected to WhatsApp</h1>
<p>The relay is ready to send messages.</p>
{{else if .QRDataURI}}
<h1>Scan to pair</h1>
<img src="{{.QRDataURI}}" alt="pairing QR code" width="256" height="256">
<p>Open WhatsApp &gt; Linked Devices and scan the code above.</p>
{{else}}
<h1>Initializing&hellip;</h1>
<p>Waiting for the pairing code. This page refreshes automatically.</p>
{{end}}
</body>
</html>
`))

type qrPageData struct {
	Connected bool
	QRDataURI template.URL
	Refresh   bool
}

func (s *Server) qrPage(c *gin.Context) {
	st := s.relay.Status()

	data := qrPageData{Refresh: true}
	switch st.State {
	case wa.StateConnected:
		data.Connected = true
		data.Refresh = false
	case wa.StateAwaitingPairing:
		png, err := qrcode.Encode(st.Challenge, qrcode.Medium, 256)
		if err != nil {
			s.log.WithError(err).Error("encoding pairing QR")
		} else {
			data.QRDataURI = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))
		}
	}

	var buf bytes.Buffer
	if err := qrPageTmpl.Execute(&buf, data); err != nil {
		c.String(http.StatusInternalServerError, "template error")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}
