// Command oshimaint maintains the fan-content catalog: it ingests YouTube
// and TMDB metadata, removes duplicate and low-value rows, merges duplicate
// locations and keeps Tabelog links ready for LinkSwitch.
//
// Destructive commands are dry runs unless --apply is given. Every run is
// recorded in the local journal together with a backup of each row it
// changed; `oshimaint journal restore` puts them back.
package main
