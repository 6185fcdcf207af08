// Package newsletter mails newly published documents to subscribers.
//
// Files in this package:
//   - interfaces.go — collaborators (mailer, recipient source)
//   - service.go    — queue, delivery and the cron job
//   - handler.go    — admin routes
package newsletter
