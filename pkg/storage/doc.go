// Package storage provides file management for downloaded images.
//
// The Manager type owns the output directory and writes every file
// atomically using a temporary file and rename, so an interrupted write
// never leaves a partial image behind.
//
// Usage:
//
//	manager, err := storage.NewManager("downloads")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = manager.Save(reader, "image_ab12cd34.jpg", true)
package storage
