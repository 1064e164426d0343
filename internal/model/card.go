package model

import (
	"fmt"
	"path"
	"strings"
)

type CardKind string

const (
	CardText   CardKind = "text"
	CardImage  CardKind = "image"
	CardVideo  CardKind = "video"
	CardSong   CardKind = "song"
	CardEmbed  CardKind = "embed"
	CardSocial CardKind = "social"
)

// ProviderUpload marks media that lives in this service's storage.
const ProviderUpload = "Upload"

// ParseCardKind validates a card type name.
func ParseCardKind(s string) (CardKind, error) {
	switch k := CardKind(s); k {
	case CardText, CardImage, CardVideo, CardSong, CardEmbed, CardSocial:
		return k, nil
	}
	return "", fmt.Errorf("unknown card type %q", s)
}

// IsMedia reports whether cards of this kind can carry uploaded files.
func (k CardKind) IsMedia() bool {
	return k == CardImage || k == CardVideo || k == CardSong
}

// QualifiesAsCover reports whether a first card of this kind becomes the loop cover.
func (k CardKind) QualifiesAsCover() bool {
	return k == CardImage || k == CardVideo
}

// Card is one item of a loop. Exactly one variant exists per CardKind;
// code that handles cards switches over the concrete types.
type Card interface {
	CardID() string
	Kind() CardKind
	isCard()
}

// Source is where the media of an image, video or song card comes from.
type Source interface {
	isSource()
}

// LinkSource is media referenced by an external URL.
type LinkSource struct {
	URL string
}

// PendingFile is a validated local file waiting to be uploaded at publish.
type PendingFile struct {
	StagedPath string
	FileName   string
	MimeType   string
	Size       int64
	Checksum   string // hex sha256 of the file content
}

// StoredObject is media already in storage under Path.
type StoredObject struct {
	Path          string
	FileName      string
	MimeType      string
	Size          int64
	MediaUploadID string
}

func (LinkSource) isSource()   {}
func (PendingFile) isSource()  {}
func (StoredObject) isSource() {}

// Thumbnail is the poster frame chosen for a video card.
type Thumbnail struct {
	URL         string  `json:"url"`
	TimeSeconds float64 `json:"time_seconds"`
}

type TextCard struct {
	LocalID string
	Text    string
}

type ImageCard struct {
	LocalID  string
	Provider string
	Source   Source
}

type VideoCard struct {
	LocalID   string
	Provider  string
	Source    Source
	Thumbnail *Thumbnail
}

type SongCard struct {
	LocalID  string
	Provider string
	Source   Source
}

type EmbedCard struct {
	LocalID  string
	URL      string
	Metadata *EmbedMetadata
}

type SocialCard struct {
	LocalID  string
	URL      string
	Platform string
}

func (c TextCard) CardID() string   { return c.LocalID }
func (c ImageCard) CardID() string  { return c.LocalID }
func (c VideoCard) CardID() string  { return c.LocalID }
func (c SongCard) CardID() string   { return c.LocalID }
func (c EmbedCard) CardID() string  { return c.LocalID }
func (c SocialCard) CardID() string { return c.LocalID }

func (TextCard) Kind() CardKind   { return CardText }
func (ImageCard) Kind() CardKind  { return CardImage }
func (VideoCard) Kind() CardKind  { return CardVideo }
func (SongCard) Kind() CardKind   { return CardSong }
func (EmbedCard) Kind() CardKind  { return CardEmbed }
func (SocialCard) Kind() CardKind { return CardSocial }

func (TextCard) isCard()   {}
func (ImageCard) isCard()  {}
func (VideoCard) isCard()  {}
func (SongCard) isCard()   {}
func (EmbedCard) isCard()  {}
func (SocialCard) isCard() {}

// MediaSource returns the source of a media card. ok is false for cards
// without media.
func MediaSource(c Card) (src Source, ok bool) {
	switch v := c.(type) {
	case ImageCard:
		return v.Source, true
	case VideoCard:
		return v.Source, true
	case SongCard:
		return v.Source, true
	case TextCard, EmbedCard, SocialCard:
		return nil, false
	default:
		panic(fmt.Sprintf("unhandled card type %T", c))
	}
}

// WithSource returns a copy of a media card pointing at src.
func WithSource(c Card, src Source) (Card, error) {
	switch v := c.(type) {
	case ImageCard:
		v.Source = src
		return v, nil
	case VideoCard:
		v.Source = src
		return v, nil
	case SongCard:
		v.Source = src
		return v, nil
	case TextCard, EmbedCard, SocialCard:
		return nil, fmt.Errorf("%s cards have no media source", c.Kind())
	default:
		panic(fmt.Sprintf("unhandled card type %T", c))
	}
}

// WithLocalID returns a copy of c carrying id.
func WithLocalID(c Card, id string) Card {
	switch v := c.(type) {
	case TextCard:
		v.LocalID = id
		return v
	case ImageCard:
		v.LocalID = id
		return v
	case VideoCard:
		v.LocalID = id
		return v
	case SongCard:
		v.LocalID = id
		return v
	case EmbedCard:
		v.LocalID = id
		return v
	case SocialCard:
		v.LocalID = id
		return v
	default:
		panic(fmt.Sprintf("unhandled card type %T", c))
	}
}

// Content returns the text, URL or storage path a card shows. A pending file
// has no content until it is uploaded.
func Content(c Card) string {
	switch v := c.(type) {
	case TextCard:
		return v.Text
	case EmbedCard:
		return v.URL
	case SocialCard:
		return v.URL
	case ImageCard, VideoCard, SongCard:
		src, _ := MediaSource(c)
		return sourceContent(src)
	default:
		panic(fmt.Sprintf("unhandled card type %T", c))
	}
}

func sourceContent(src Source) string {
	switch s := src.(type) {
	case LinkSource:
		return s.URL
	case StoredObject:
		return s.Path
	case PendingFile:
		return ""
	case nil:
		return ""
	default:
		panic(fmt.Sprintf("unhandled source type %T", src))
	}
}

// IsUpload reports whether the card's media is (or will be) in storage.
func IsUpload(c Card) bool {
	src, ok := MediaSource(c)
	if !ok {
		return false
	}
	switch src.(type) {
	case PendingFile, StoredObject:
		return true
	}
	return false
}

// Provider returns the provider label of a card.
func Provider(c Card) string {
	switch v := c.(type) {
	case ImageCard:
		return v.Provider
	case VideoCard:
		return v.Provider
	case SongCard:
		return v.Provider
	case SocialCard:
		return v.Platform
	case TextCard, EmbedCard:
		return ""
	default:
		panic(fmt.Sprintf("unhandled card type %T", c))
	}
}

// Metadata returns the link metadata of embed cards and nil otherwise.
func Metadata(c Card) *EmbedMetadata {
	if v, ok := c.(EmbedCard); ok {
		return v.Metadata
	}
	return nil
}

// FileName returns the original file name of uploaded media.
func FileName(c Card) string {
	src, ok := MediaSource(c)
	if !ok {
		return ""
	}
	switch s := src.(type) {
	case PendingFile:
		return s.FileName
	case StoredObject:
		return s.FileName
	}
	return ""
}

// SameContent reports whether two cards are semantically identical: same
// type, content, upload flag, file and metadata. The local id is ignored.
func SameContent(a, b Card) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	if Content(a) != Content(b) || IsUpload(a) != IsUpload(b) || FileName(a) != FileName(b) {
		return false
	}
	if pa, ok := pendingOf(a); ok {
		pb, _ := pendingOf(b)
		if pa.Checksum != pb.Checksum || pa.Size != pb.Size {
			return false
		}
	}
	return Metadata(a).Equal(Metadata(b))
}

func pendingOf(c Card) (PendingFile, bool) {
	src, ok := MediaSource(c)
	if !ok {
		return PendingFile{}, false
	}
	p, ok := src.(PendingFile)
	return p, ok
}

// NewCardRow converts a card that has been resolved for publishing into its
// row form. Pending files must have been uploaded first.
func NewCardRow(c Card, loopID string, position int) (*LoopCard, error) {
	row := &LoopCard{
		LoopID:   loopID,
		Position: position,
		Type:     string(c.Kind()),
		Provider: Provider(c),
		IsCover:  position == 0,
		Metadata: Metadata(c),
	}

	if src, ok := MediaSource(c); ok {
		switch src.(type) {
		case PendingFile:
			return nil, fmt.Errorf("card %s has a file that was never uploaded", c.CardID())
		case StoredObject:
			row.IsUpload = true
			row.Provider = ProviderUpload
		}
	}

	if v, ok := c.(VideoCard); ok && v.Thumbnail != nil {
		row.ThumbnailURL = v.Thumbnail.URL
		row.ThumbnailTime = v.Thumbnail.TimeSeconds
	}

	row.Content = Content(c)
	if row.Content == "" {
		return nil, fmt.Errorf("card %s has no content", c.CardID())
	}
	return row, nil
}

// CardFromRow rebuilds a card from its persisted row.
func CardFromRow(row *LoopCard, localID string) (Card, error) {
	kind, err := ParseCardKind(row.Type)
	if err != nil {
		return nil, err
	}

	var src Source = LinkSource{URL: row.Content}
	if row.IsUpload {
		obj := StoredObject{Path: row.Content, FileName: path.Base(row.Content)}
		if row.FileName != nil {
			obj.FileName = *row.FileName
		}
		if row.FileType != nil {
			obj.MimeType = *row.FileType
		}
		if row.FileSize != nil {
			obj.Size = *row.FileSize
		}
		if row.MediaUploadID != nil {
			obj.MediaUploadID = *row.MediaUploadID
		}
		src = obj
	}

	switch kind {
	case CardText:
		return TextCard{LocalID: localID, Text: row.Content}, nil
	case CardImage:
		return ImageCard{LocalID: localID, Provider: row.Provider, Source: src}, nil
	case CardVideo:
		card := VideoCard{LocalID: localID, Provider: row.Provider, Source: src}
		if row.ThumbnailURL != "" {
			card.Thumbnail = &Thumbnail{URL: row.ThumbnailURL, TimeSeconds: row.ThumbnailTime}
		}
		return card, nil
	case CardSong:
		return SongCard{LocalID: localID, Provider: row.Provider, Source: src}, nil
	case CardEmbed:
		return EmbedCard{LocalID: localID, URL: row.Content, Metadata: row.Metadata}, nil
	case CardSocial:
		return SocialCard{LocalID: localID, URL: row.Content, Platform: row.Provider}, nil
	}
	return nil, fmt.Errorf("unknown card type %q", row.Type)
}

// UserMediaPrefix is the storage namespace of a user's loop media.
func UserMediaPrefix(userID string) string {
	return "loop_media/" + userID + "/"
}

// IsForeignObject reports whether a storage path lies outside userID's namespace.
func IsForeignObject(storagePath, userID string) bool {
	return strings.HasPrefix(storagePath, "loop_media/") && !strings.HasPrefix(storagePath, UserMediaPrefix(userID))
}
