// Package trustdesk provides a Go client for the trustdesk question answering API.
//
// Single questions are answered synchronously:
//
//	client, _ := trustdesk.New(trustdesk.WithBaseURL("http://localhost:8080"),
//	    trustdesk.WithAPIKey(os.Getenv("TRUSTDESK_API_KEY")),
//	)
//	ans, _ := client.Answer(ctx, "Do you encrypt data at rest?", "")
//	fmt.Println(ans.Answer, ans.Citations)
//
// Questionnaires are submitted as batch jobs and polled to completion:
//
//	job, _ := client.SubmitJob(ctx, trustdesk.JobRequest{
//	    Questions: []trustdesk.JobQuestion{{Question: "Is MFA enforced?"}},
//	})
//	job, _ = client.WaitJob(ctx, job.ID)
//	for _, r := range job.Results {
//	    fmt.Println(r.QuestionID, r.Answer, r.Error)
//	}
package trustdesk
