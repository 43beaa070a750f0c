package reference

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested name is absent from the
// catalogue for the given species.
var ErrNotFound = errors.New("reference: not found in catalogue")

// Loader resolves catalogue entries to parsed assets via a Downloader,
// caching each by (species, name) so repeated CellLabelling/
// FeatureSetEnrichment runs against the same references do not re-fetch.
type Loader struct {
	catalogue  *Catalogue
	downloader Downloader

	profiles    map[string]Profile
	collections map[string]Collection
}

// NewLoader constructs a caching reference loader.
func NewLoader(catalogue *Catalogue, downloader Downloader) *Loader {
	return &Loader{
		catalogue:   catalogue,
		downloader:  downloader,
		profiles:    make(map[string]Profile),
		collections: make(map[string]Collection),
	}
}

// Catalogue returns the underlying catalogue, for Species()/Collections()
// listing by automatic-mode scoring.
func (l *Loader) Catalogue() *Catalogue { return l.catalogue }

// LoadReference returns the parsed reference panel for (species, name),
// downloading and caching it on first use.
func (l *Loader) LoadReference(ctx context.Context, species, name string) (Profile, error) {
	key := species + "/" + name
	if p, ok := l.profiles[key]; ok {
		return p, nil
	}
	entry, ok := l.catalogue.referenceEntry(species, name)
	if !ok {
		return Profile{}, fmt.Errorf("reference: %s/%s: %w", species, name, ErrNotFound)
	}
	data, err := l.downloader.Download(ctx, entry.URL)
	if err != nil {
		return Profile{}, err
	}
	profile, err := ParseProfile(data)
	if err != nil {
		return Profile{}, err
	}
	l.profiles[key] = profile
	return profile, nil
}

// LoadCollection returns the parsed feature-set collection for (species,
// name), downloading and caching it on first use.
func (l *Loader) LoadCollection(ctx context.Context, species, name string) (Collection, error) {
	key := species + "/" + name
	if c, ok := l.collections[key]; ok {
		return c, nil
	}
	entry, ok := l.catalogue.collectionEntry(species, name)
	if !ok {
		return Collection{}, fmt.Errorf("reference: %s/%s: %w", species, name, ErrNotFound)
	}
	data, err := l.downloader.Download(ctx, entry.URL)
	if err != nil {
		return Collection{}, err
	}
	collection, err := ParseCollection(data)
	if err != nil {
		return Collection{}, err
	}
	l.collections[key] = collection
	return collection, nil
}
