package model

import (
	"strings"
	"unicode"
)

// Detection labels form a closed set; raw signal metadata is normalized to
// one of these values before an item is created.
const (
	LabelPerson  = "person"
	LabelPet     = "pet"
	LabelVehicle = "vehicle"
	LabelMotion  = "motion"
	LabelVisitor = "visitor"
)

// SupportedLabels lists every valid detection label.
var SupportedLabels = []string{LabelPerson, LabelPet, LabelVehicle, LabelMotion, LabelVisitor}

// legacyAliases maps labels written by older versions to current values.
var legacyAliases = map[string]string{
	"animal": LabelPet,
}

// SuffixToLabel maps entity id suffixes to detection labels. The camera
// firmware localizes sensor names, so the Dutch suffixes it is observed to
// produce are mapped as well.
var SuffixToLabel = map[string]string{
	"_person":   LabelPerson,
	"_animal":   LabelPet,
	"_pet":      LabelPet,
	"_vehicle":  LabelVehicle,
	"_motion":   LabelMotion,
	"_visitor":  LabelVisitor,
	"_persoon":  LabelPerson,
	"_dier":     LabelPet,
	"_voertuig": LabelVehicle,
	"_beweging": LabelMotion,
	"_bezoeker": LabelVisitor,
}

// translationKeyToLabel maps registry translation keys, which are stable
// across UI languages, to detection labels.
var translationKeyToLabel = map[string]string{
	"person":  LabelPerson,
	"animal":  LabelPet,
	"pet":     LabelPet,
	"vehicle": LabelVehicle,
	"motion":  LabelMotion,
	"visitor": LabelVisitor,
}

// NormalizeLabel maps legacy aliases to current label values. Unknown labels
// pass through unchanged.
func NormalizeLabel(label string) string {
	if mapped, ok := legacyAliases[strings.ToLower(label)]; ok {
		return mapped
	}
	return label
}

// ValidLabel reports whether label is one of the supported detection labels.
func ValidLabel(label string) bool {
	for _, l := range SupportedLabels {
		if l == label {
			return true
		}
	}
	return false
}

// LabelFromTranslationKey resolves a registry translation key to a label.
func LabelFromTranslationKey(key string) (string, bool) {
	label, ok := translationKeyToLabel[strings.ToLower(key)]
	return label, ok
}

// LabelFromSuffix resolves a label from an identifier suffix, e.g. a unique
// id or the object part of an entity id.
func LabelFromSuffix(id string) (string, bool) {
	lowered := strings.ToLower(id)
	for suffix, label := range SuffixToLabel {
		if strings.HasSuffix(lowered, suffix) {
			return label, true
		}
	}
	return "", false
}

// cameraNameSuffixes are detection-category suffixes stripped from friendly
// names to recover the owning camera's display name.
var cameraNameSuffixes = []string{
	" person", " animal", " pet", " vehicle", " motion", " visitor",
	" persoon", " dier", " voertuig", " beweging", " bezoeker",
}

// CameraNameFromSource derives the camera display name from a signal
// source. The friendly name is preferred with any detection suffix
// stripped; without one the entity object id is title-cased.
func CameraNameFromSource(entityID, friendlyName string) string {
	if friendlyName != "" {
		normalized := strings.TrimSpace(friendlyName)
		lowered := strings.ToLower(normalized)
		for _, suffix := range cameraNameSuffixes {
			if strings.HasSuffix(lowered, suffix) {
				return strings.TrimSpace(normalized[:len(normalized)-len(suffix)])
			}
		}
		return normalized
	}

	objectID := entityID
	if idx := strings.IndexByte(entityID, '.'); idx >= 0 {
		objectID = entityID[idx+1:]
	}
	for suffix := range SuffixToLabel {
		if trimmed, ok := strings.CutSuffix(strings.ToLower(objectID), suffix); ok {
			objectID = trimmed
			break
		}
	}
	return titleCase(strings.TrimSpace(strings.ReplaceAll(objectID, "_", " ")))
}

// Slugify converts a display name to a filesystem-safe slug.
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('_')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
