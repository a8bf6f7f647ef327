package domain

import "fmt"

// PhotoPosition names one of the four body-composition photo slots.
type PhotoPosition string

const (
	PhotoFront PhotoPosition = "front"
	PhotoRight PhotoPosition = "right"
	PhotoLeft  PhotoPosition = "left"
	PhotoBack  PhotoPosition = "back"
)

// PhotoPositions lists the slots in display order.
var PhotoPositions = []PhotoPosition{PhotoFront, PhotoRight, PhotoLeft, PhotoBack}

func (p PhotoPosition) Valid() bool {
	switch p {
	case PhotoFront, PhotoRight, PhotoLeft, PhotoBack:
		return true
	}
	return false
}

// Photos maps a slot to the storage object key of the uploaded picture.
type Photos map[PhotoPosition]string

// Validate checks slot names; at most one photo per slot is implied by the map.
func (p Photos) Validate() error {
	for pos, key := range p {
		if !pos.Valid() {
			return fmt.Errorf("unknown photo position %q", pos)
		}
		if key == "" {
			return fmt.Errorf("empty object key for photo %q", pos)
		}
	}
	return nil
}

// Merge returns a copy of p overwritten by the non-empty entries of other.
func (p Photos) Merge(other Photos) Photos {
	out := make(Photos, len(p)+len(other))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range other {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// PhotoFolder is the purpose-scoped storage folder for an upload.
type PhotoFolder string

const (
	FolderChecks   PhotoFolder = "checks"
	FolderAnamnesi PhotoFolder = "anamnesi"
)

func (f PhotoFolder) Valid() bool {
	return f == FolderChecks || f == FolderAnamnesi
}
