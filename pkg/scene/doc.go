/*
Package scene holds the coordinator's scene registry: object and
treelet metadata read from the scene dumper's manifest, plus the
dynamic holder sets that grow as objects are assigned to workers.

LoadManifest parses the dumper's YAML manifest; Registry.LoadManifest
builds the in-memory index from it and closes the treelet id set before
any worker connects. Store persists that index to an embedded bbolt
database so a restarted coordinator can rehydrate it rather than
re-parsing the manifest.
*/
package scene
