package fbfunnels

import (
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/js"
)

const jsMimetype = "application/javascript"

// ScriptRenderer turns pixels into embeddable script tags.
type ScriptRenderer struct {
	m *minify.M
}

func NewScriptRenderer() *ScriptRenderer {
	m := minify.New()
	m.AddFuncRegexp(regexp.MustCompile("^(application|text)/(x-)?(java|ecma)script$"), js.Minify)
	return &ScriptRenderer{m: m}
}

// Script returns the snippet of one pixel. Unknown pixel types are an
// error, every known type has its own rule.
func (r *ScriptRenderer) Script(p TrackingPixel) (string, error) {
	id := template.JSEscapeString(p.PixelID)
	event := template.JSEscapeString(p.EventName)

	var loader, body string
	switch p.PixelType {
	case PixelFacebook:
		body = `!function(f,b,e,v,n,t,s){if(f.fbq)return;n=f.fbq=function(){n.callMethod?
n.callMethod.apply(n,arguments):n.queue.push(arguments)};if(!f._fbq)f._fbq=n;
n.push=n;n.loaded=!0;n.version='2.0';n.queue=[];t=b.createElement(e);t.async=!0;
t.src=v;s=b.getElementsByTagName(e)[0];s.parentNode.insertBefore(t,s)}(window,
document,'script','https://connect.facebook.net/en_US/fbevents.js');
fbq('init', '` + id + `');
fbq('track', 'PageView');`
		if event != "" {
			body += "\nfbq('track', '" + event + "');"
		}
	case PixelGoogle:
		loader = `<script async src="https://www.googletagmanager.com/gtag/js?id=` + template.HTMLEscapeString(p.PixelID) + `"></script>`
		body = `window.dataLayer = window.dataLayer || [];
function gtag(){dataLayer.push(arguments);}
gtag('js', new Date());
gtag('config', '` + id + `');`
		if event != "" {
			body += "\ngtag('event', '" + event + "');"
		}
	case PixelTikTok:
		body = `!function (w, d, t) {
w.TiktokAnalyticsObject=t;var ttq=w[t]=w[t]||[];ttq.methods=["page","track","identify"];
ttq.setAndDefer=function(t,e){t[e]=function(){t.push([e].concat(Array.prototype.slice.call(arguments,0)))}};
for(var i=0;i<ttq.methods.length;i++)ttq.setAndDefer(ttq,ttq.methods[i]);
ttq.load=function(e){var s=d.createElement("script");s.async=!0;
s.src="https://analytics.tiktok.com/i18n/pixel/events.js?sdkid="+e;d.head.appendChild(s)};
}(window, document, 'ttq');
ttq.load('` + id + `');
ttq.page();`
		if event != "" {
			body += "\nttq.track('" + event + "');"
		}
	case PixelCustom:
		body = "console.log('Custom pixel:', '" + id + "', '" + event + "');"
	default:
		return "", fmt.Errorf("unknown pixel type %q", p.PixelType)
	}

	return loader + "<script>" + r.minifyJS(body) + "</script>", nil
}

// Render concatenates the scripts of the active pixels. Pixels that
// cannot be rendered are skipped.
func (r *ScriptRenderer) Render(pixels []TrackingPixel) string {
	var parts []string
	for _, p := range pixels {
		if !p.IsActive {
			continue
		}
		script, err := r.Script(p)
		if err != nil {
			log.Warn().Err(err).Uint("pixel_id", p.ID).Msg("pixel skipped")
			continue
		}
		parts = append(parts, script)
	}
	return strings.Join(parts, "\n")
}

func (r *ScriptRenderer) minifyJS(src string) string {
	out, err := r.m.String(jsMimetype, src)
	if err != nil {
		return src
	}
	return out
}
