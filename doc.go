// Package snfs is the Composition Root for snfs.
//
// It mounts a Standard Notes account as a filesystem. Notes and tags are
// end-to-end encrypted on the sync server; snfs decrypts them into memory,
// projects them as a directory tree, and pushes edits back on a timer.
//
// Layout:
//
//   - /<title>.txt: notes that are neither archived nor trashed.
//   - /tags/<tag>/: one directory per tag, listing its notes.
//   - /archived/, /trash/: notes in those states.
//
// Removing a note moves it to trash; removing it from trash deletes it.
// Renaming across these directories archives, trashes, tags or restores.
//
// Usage:
//
//	client := snfs.NewClient(snfs.DefaultURL, logger)
//	creds, err := snfs.Login(ctx, client, snfs.LoginRequest{Username: user}, prompt)
//
//	sess, err := snfs.New(client, creds.Keys.Keys,
//		snfs.WithSyncInterval(time.Minute),
//		snfs.WithLogger(logger),
//	)
//	if err := sess.Start(ctx); err != nil { ... }
//	defer sess.Close(context.Background())
//	err = sess.Mount(ctx, "/mnt/notes")
package snfs
