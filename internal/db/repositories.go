package db

// Repositories provides access to all catalog repositories
type Repositories struct {
	Stations       *StationRepository
	SoundFragments *SoundFragmentRepository
}

// NewRepositories creates a new repository collection
func NewRepositories(db *DB) *Repositories {
	return &Repositories{
		Stations:       NewStationRepository(db),
		SoundFragments: NewSoundFragmentRepository(db),
	}
}
