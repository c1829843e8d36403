// Package dataset normalizes raw multi-language language-pack payloads into a
// flat row-oriented model suitable for filtering and virtualized rendering.
package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/lolikgiovi/lockey/pkg/errors"
)

// RawValuePlaceholder replaces non-string leaf values so raw objects never
// leak into rendered output.
const RawValuePlaceholder = "[raw value]"

// DefaultPackID is used when the payload carries no languagePackId.
const DefaultPackID = "N/A"

// Row is one localization key with its translation per language. A language
// missing in the source is present with an empty string, never omitted.
type Row struct {
	Key    string            `json:"key"`
	Values map[string]string `json:"values"`
}

// Value returns the translation for a language, empty string when absent.
func (r Row) Value(language string) string {
	if r.Values == nil {
		return ""
	}
	return r.Values[language]
}

// Dataset is the normalized row-oriented model. Languages keep the first-seen
// order across the source payload; rows keep first-seen key order.
type Dataset struct {
	PackID    string   `json:"packId"`
	Languages []string `json:"languages"`
	Rows      []Row    `json:"rows"`
}

// HasKey reports whether any row carries the given key.
func (d *Dataset) HasKey(key string) bool {
	if d == nil {
		return false
	}
	for _, row := range d.Rows {
		if row.Key == key {
			return true
		}
	}
	return false
}

// Normalize parses a raw language-pack payload shaped
// {content: {lang: {key: value}}, languagePackId?: string} into a Dataset.
// Source object order is preserved: a streaming decode keeps languages and
// keys in first-seen order, which encoding/json maps would destroy.
func Normalize(data []byte) (*Dataset, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidStructure, "payload is not valid JSON")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New(errors.ErrCodeInvalidStructure, "payload must be a JSON object")
	}

	ds := &Dataset{PackID: DefaultPackID}
	rowIndex := map[string]int{}
	seenLang := map[string]bool{}
	contentSeen := false

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInvalidStructure, "truncated payload")
		}
		field, _ := keyTok.(string)

		switch field {
		case "content":
			contentSeen = true
			if err := parseContent(dec, ds, rowIndex, seenLang); err != nil {
				return nil, err
			}
		case "languagePackId":
			tok, err := dec.Token()
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeInvalidStructure, "truncated payload")
			}
			if s, ok := tok.(string); ok && s != "" {
				ds.PackID = s
			}
		default:
			if err := skipValue(dec); err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeInvalidStructure, "truncated payload")
			}
		}
	}

	if !contentSeen {
		return nil, errors.New(errors.ErrCodeMissingContent, "payload has no content block")
	}
	if len(ds.Languages) == 0 {
		return nil, errors.New(errors.ErrCodeNoLanguageData, "content has no language data")
	}

	// Every row carries an entry for every language.
	for i := range ds.Rows {
		for _, lang := range ds.Languages {
			if _, ok := ds.Rows[i].Values[lang]; !ok {
				ds.Rows[i].Values[lang] = ""
			}
		}
	}

	return ds, nil
}

func parseContent(dec *json.Decoder, ds *Dataset, rowIndex map[string]int, seenLang map[string]bool) error {
	tok, err := dec.Token()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidStructure, "truncated content block")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New(errors.ErrCodeInvalidStructure, "content must be an object")
	}

	for dec.More() {
		langTok, err := dec.Token()
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInvalidStructure, "truncated content block")
		}
		lang, _ := langTok.(string)

		open, err := dec.Token()
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInvalidStructure, "truncated content block")
		}
		delim, isDelim := open.(json.Delim)
		if !isDelim || delim != '{' {
			// Non-object language entries carry no keys; skip the rest of
			// the value if it is a container.
			if isDelim {
				if err := skipOpened(dec, delim); err != nil {
					return errors.Wrap(err, errors.ErrCodeInvalidStructure, "truncated content block")
				}
			}
			continue
		}

		if !seenLang[lang] {
			seenLang[lang] = true
			ds.Languages = append(ds.Languages, lang)
		}

		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInvalidStructure, "truncated language block")
			}
			key, _ := keyTok.(string)

			value, err := decodeLeaf(dec)
			if err != nil {
				return err
			}

			idx, ok := rowIndex[key]
			if !ok {
				idx = len(ds.Rows)
				rowIndex[key] = idx
				ds.Rows = append(ds.Rows, Row{Key: key, Values: map[string]string{}})
			}
			ds.Rows[idx].Values[lang] = value
		}
		if _, err := dec.Token(); err != nil { // closing '}'
			return errors.Wrap(err, errors.ErrCodeInvalidStructure, "truncated language block")
		}
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return errors.Wrap(err, errors.ErrCodeInvalidStructure, "truncated content block")
	}
	return nil
}

// decodeLeaf reads one leaf value, converting non-strings to the raw-value
// placeholder instead of rendering them directly.
func decodeLeaf(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInvalidStructure, "truncated leaf value")
	}
	switch v := tok.(type) {
	case string:
		return v, nil
	case json.Delim:
		if err := skipOpened(dec, v); err != nil {
			return "", errors.Wrap(err, errors.ErrCodeInvalidStructure, "truncated leaf value")
		}
		return RawValuePlaceholder, nil
	default:
		// numbers, booleans, null
		return RawValuePlaceholder, nil
	}
}

// skipValue consumes exactly one JSON value from the decoder.
func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); ok {
		return skipOpened(dec, delim)
	}
	return nil
}

// skipOpened consumes the remainder of a container whose opening delimiter
// was already read.
func skipOpened(dec *json.Decoder, open json.Delim) error {
	if open != '{' && open != '[' {
		return nil
	}
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return fmt.Errorf("unexpected end of container")
			}
			return err
		}
		if delim, ok := tok.(json.Delim); ok {
			switch delim {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}
