// Package recall embeds grounded question answering in a Go program.
//
// A Client indexes plain-text documents with character n-gram TF-IDF,
// retrieves the passages most similar to a question, and asks a
// language model to answer from those passages only. When the passages
// do not contain the answer the model replies with a sentinel and the
// client returns a "not mentioned in the context" answer instead.
//
// # In-memory corpus
//
//	client, _ := recall.New(ctx,
//	    recall.WithDocuments(
//	        recall.Document{Key: "notes/paris.txt", Content: "Paris is the capital of France."},
//	    ),
//	    recall.WithGenerator(myModel),
//	)
//	_, _ = client.Reload(ctx)
//	ans, _ := client.Ask(ctx, "What is the capital of France?", 5)
//
// # S3 corpus
//
//	client, _ := recall.New(ctx,
//	    recall.WithS3(awsCfg, "text-description", "screenshots/"),
//	    recall.WithGenerator(myModel),
//	)
//
// Search returns the ranked passages without calling the model and works
// without a generator.
package recall
