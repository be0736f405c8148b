package usps

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/nhle/mailtrack/internal/content"
	"github.com/nhle/mailtrack/internal/mail"
	"github.com/nhle/mailtrack/internal/model"
)

// Inline CID image references tied to known anchor ids in the digest
// HTML: the campaign representative image and the mailpiece container.
var (
	campaignImgCidRx = regexp.MustCompile(
		`(?i)id=["']campaign-representative-image-src-id["'][^>]+src=["']cid:([^"']+)`)
	mailpieceImgCidRx = regexp.MustCompile(
		`(?i)id=["']mailpiece-div-id["'][\s\S]*?src=["']cid:([^"']+)`)

	unsafeNameRx = regexp.MustCompile(`[^\w\-+.]+`)
)

// saveMailImages extracts the inline mailpiece scans referenced by the
// digest HTML and writes them to the content store. Filenames are keyed
// by message date, sequence, and a sender hint so consecutive digests do
// not collide. Store failures skip the item; the extraction continues.
func saveMailImages(msg *mail.Message, html string, mailFrom []string, store content.Store) model.ImageSet {
	empty := model.ImageSet{URLs: []string{}, Files: []string{}}

	var cids []string
	for _, m := range campaignImgCidRx.FindAllStringSubmatch(html, -1) {
		cids = append(cids, m[1])
	}
	for _, m := range mailpieceImgCidRx.FindAllStringSubmatch(html, -1) {
		cids = append(cids, m[1])
	}
	cids = dedupKeepOrder(cids)
	if len(cids) == 0 || store == nil {
		return empty
	}

	wanted := make(map[string]struct{}, len(cids))
	for _, cid := range cids {
		wanted[cid] = struct{}{}
	}

	parts := make(map[string]mail.Part, len(cids))
	for _, p := range msg.Parts {
		if !strings.HasPrefix(p.ContentType, "image") || p.ContentID == "" {
			continue
		}
		if _, ok := wanted[p.ContentID]; ok {
			parts[p.ContentID] = p
		}
	}
	if len(parts) == 0 {
		return empty
	}

	dateTag := messageDateTag(msg)

	out := empty
	for i, cid := range cids {
		p, ok := parts[cid]
		if !ok || len(p.Data) == 0 {
			continue
		}

		senderHint := "mail"
		if i < len(mailFrom) {
			senderHint = mailFrom[i]
		}
		name := fmt.Sprintf("usps_%s_%02d_%s%s",
			dateTag, i+1, safeName(senderHint), guessExt(p.ContentType, p.Filename))

		ref, err := store.Put(name, p.Data)
		if err != nil {
			continue
		}
		out.Files = append(out.Files, ref.Path)
		out.URLs = append(out.URLs, ref.URL)
	}
	out.Count = len(out.Files)
	return out
}

func messageDateTag(msg *mail.Message) string {
	ts := msg.Timestamp()
	t := time.Now().UTC()
	if ts > 0 {
		t = time.Unix(int64(ts), 0).UTC()
	}
	return t.Format("20060102_150405")
}

// safeName makes a filesystem-friendly sender hint, capped at 64 runes.
func safeName(s string) string {
	s = unsafeNameRx.ReplaceAllString(strings.TrimSpace(s), "_")
	if len(s) > 64 {
		s = s[:64]
	}
	if s == "" {
		return "mailpiece"
	}
	return s
}

func guessExt(ctype, filename string) string {
	if i := strings.LastIndex(filename, "."); i >= 0 && i < len(filename)-1 {
		return "." + strings.ToLower(filename[i+1:])
	}
	ct := strings.ToLower(ctype)
	switch {
	case strings.HasSuffix(ct, "jpeg"), strings.HasSuffix(ct, "jpg"):
		return ".jpg"
	case strings.HasSuffix(ct, "png"):
		return ".png"
	}
	return ".bin"
}
