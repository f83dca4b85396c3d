// Package upload runs batch file uploads on top of a request client.
//
// Files come from a Selector, are sent concurrently through the client's
// transport as multipart form data, and every response is decoded with the
// configured result contract and the upload result field. Per-file byte
// progress is averaged into one fraction reported in steps of at least 0.1.
//
// # Usage
//
//	orch := upload.New(client, upload.FileSelector{Paths: paths})
//	task := orch.Upload(ctx, upload.Options{Kind: upload.KindImage})
//	task.OnStart(func() { fmt.Println("uploading") }).
//		OnProgress(func(p float64) { fmt.Printf("%.0f%%\n", p*100) })
//	urls, err := task.Wait(ctx)
package upload
