package domain

import "time"

// MovieRef caches the display fields of an externally owned movie.
// Created on the first scheduling request, immutable afterwards except
// on an explicit re-fetch.
type MovieRef struct {
	ID          string    `bson:"_id" json:"id"`
	Title       string    `bson:"title" json:"title"`
	Overview    string    `bson:"overview,omitempty" json:"overview,omitempty"`
	PosterPath  string    `bson:"posterPath,omitempty" json:"posterPath,omitempty"`
	ReleaseDate string    `bson:"releaseDate,omitempty" json:"releaseDate,omitempty"`
	Runtime     int       `bson:"runtime,omitempty" json:"runtime,omitempty"`
	FetchedAt   time.Time `bson:"fetchedAt" json:"-"`
}
