// Package main hosts the worklog tool entrypoint.
//
// Flow:
//   - Session acquisition: internal/session.Acquirer drives Chrome (internal/browser, chromedp) to the Jira
//     login page, clicks the submit button until it is visible, fills the username and password fields and
//     submits. The JSESSIONID and Atlassian XSRF cookies are captured and written atomically to the credential
//     file (internal/credentials, afero).
//   - Worklog submission: internal/worklog.Submitter reloads the credential file, refuses to send without both
//     cookies and POSTs a Tempo worklog with the cookies attached. Anything but 200 counts as failure.
//   - Configuration & plumbing: Viper populates config from env (TEMPO_*), an optional .env file and an optional
//     config file named by TEMPO_CONFIG; zap provides structured logging tagged with a per-run UUID7; Prometheus
//     counters are optionally dumped to a node_exporter textfile when the run ends.
//
// Operational notes:
//   - Set TEMPO_BROWSER_ENABLED=false to skip the browser and reuse the cookies already on disk.
//   - When credentials.keyring_service is set the password is read from the OS keyring and the configured
//     password becomes the fallback.
//   - The process exits 1 when either step fails and reacts to SIGINT/SIGTERM by cancelling the run.
package main
