package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "auth":
		handleAuth(args)
	case "session":
		handleSession(args)
	case "trucks":
		listTrucks(args)
	case "employees":
		listEmployees(args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleAuth(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: fleetops auth <register|login|logout|who>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "register":
		registerCompany(args[1:])
	case "login":
		loginUser(args[1:])
	case "logout":
		logoutUser()
	case "who":
		whoAmI()
	default:
		fmt.Printf("unknown auth command: %s\n", subCmd)
	}
}

func handleSession(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: fleetops session <start|end|active|history|analytics>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "start":
		startSession(args[1:])
	case "end":
		endSession(args[1:])
	case "active":
		listActiveSessions(args[1:])
	case "history":
		sessionHistory(args[1:])
	case "analytics":
		sessionAnalytics(args[1:])
	default:
		fmt.Printf("unknown session command: %s\n", subCmd)
	}
}

// Auth commands
func registerCompany(args []string) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	company := fs.String("company", "", "company name")
	business := fs.String("business", "", "business type (optional)")
	email := fs.String("email", "", "admin email")
	username := fs.String("username", "", "admin username")
	password := fs.String("password", "", "admin password")

	fs.Parse(args)

	if *company == "" || *email == "" || *username == "" || *password == "" {
		fmt.Println("Error: company, email, username, and password are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{
		"company_name": *company,
		"email":        *email,
		"username":     *username,
		"password":     *password,
	}
	if *business != "" {
		payload["business_type"] = *business
	}

	data, _ := json.Marshal(payload)
	resp, err := http.Post(getAPIURL()+"/auth/register", "application/json", bytes.NewReader(data))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 201 {
		fmt.Printf("✓ Company registered: %s\n", *company)
		if token, ok := result["token"].(string); ok {
			saveToken(token)
		}
	} else {
		fmt.Printf("✗ Registration failed: %v\n", result)
	}
}

func loginUser(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	username := fs.String("username", "", "username or email")
	password := fs.String("password", "", "password")

	fs.Parse(args)

	if *username == "" || *password == "" {
		fmt.Println("Error: username and password are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{"username": *username, "password": *password}
	data, _ := json.Marshal(payload)
	resp, err := http.Post(getAPIURL()+"/auth/login", "application/json", bytes.NewReader(data))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 200 {
		if token, ok := result["token"].(string); ok {
			saveToken(token)
			fmt.Printf("✓ Logged in as: %s\n", *username)
		}
	} else {
		fmt.Printf("✗ Login failed: %v\n", result)
	}
}

func logoutUser() {
	os.Remove(tokenFile())
	fmt.Println("✓ Logged out")
}

func whoAmI() {
	req, _ := http.NewRequest("GET", getAPIURL()+"/auth/profile", nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		fmt.Println("Not logged in")
		return
	}
	var result struct {
		User        map[string]interface{} `json:"user"`
		Permissions []string               `json:"permissions"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	fmt.Printf("✓ %v (%v) at %v\n", result.User["username"], result.User["role"], result.User["company_name"])
	if len(result.Permissions) > 0 {
		fmt.Printf("  can: %v\n", result.Permissions)
	}
}

// Session commands
func startSession(args []string) {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	truckID := fs.Int64("truck", 0, "truck id")
	employeeID := fs.Int64("employee", 0, "employee id")
	notes := fs.String("notes", "", "notes (optional)")

	fs.Parse(args)

	if *truckID == 0 || *employeeID == 0 {
		fmt.Println("Error: truck and employee are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]interface{}{
		"truck_id":    *truckID,
		"employee_id": *employeeID,
		"notes":       *notes,
	}
	data, _ := json.Marshal(payload)
	req, _ := http.NewRequest("POST", getAPIURL()+"/truck-sessions/start", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(req)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 201 {
		fmt.Printf("✓ Session %v started: truck %v, %v\n", result["id"], result["truck_number"], result["employee_name"])
	} else {
		fmt.Printf("✗ Start failed: %v\n", result)
	}
}

func endSession(args []string) {
	fs := flag.NewFlagSet("end", flag.ExitOnError)
	notes := fs.String("notes", "", "closing notes (optional)")
	fs.Parse(args)

	rest := fs.Args()
	if len(rest) < 1 {
		fmt.Println("Usage: fleetops session end [-notes ...] <session-id>")
		return
	}
	sessionID := rest[0]

	payload := map[string]interface{}{}
	if *notes != "" {
		payload["notes"] = *notes
	}
	data, _ := json.Marshal(payload)
	req, _ := http.NewRequest("PUT", getAPIURL()+"/truck-sessions/"+sessionID+"/end", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(req)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 200 {
		fmt.Printf("✓ Session %v ended after %.1f hours\n", result["id"], result["hours"])
	} else {
		fmt.Printf("✗ End failed: %v\n", result)
	}
}

func listActiveSessions(args []string) {
	_ = args
	req, _ := http.NewRequest("GET", getAPIURL()+"/truck-sessions/active", nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result struct {
		Sessions []map[string]interface{} `json:"sessions"`
	}
	json.NewDecoder(resp.Body).Decode(&result)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTRUCK\tEMPLOYEE\tSTARTED\tHOURS")
	for _, s := range result.Sessions {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%.1f\n",
			s["id"], s["truck_number"], s["employee_name"], s["start_time"], s["hours"])
	}
	w.Flush()
}

func sessionHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	page := fs.Int("page", 1, "page number")
	truckID := fs.Int64("truck", 0, "filter by truck id")
	employeeID := fs.Int64("employee", 0, "filter by employee id")
	fs.Parse(args)

	url := fmt.Sprintf("%s/truck-sessions/history?page=%d", getAPIURL(), *page)
	if *truckID != 0 {
		url += fmt.Sprintf("&truck_id=%d", *truckID)
	}
	if *employeeID != 0 {
		url += fmt.Sprintf("&employee_id=%d", *employeeID)
	}

	req, _ := http.NewRequest("GET", url, nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result struct {
		Sessions   []map[string]interface{} `json:"sessions"`
		Pagination map[string]interface{}   `json:"pagination"`
	}
	json.NewDecoder(resp.Body).Decode(&result)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTRUCK\tEMPLOYEE\tSTATUS\tHOURS")
	for _, s := range result.Sessions {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%.1f\n",
			s["id"], s["truck_number"], s["employee_name"], s["status"], s["hours"])
	}
	w.Flush()
	fmt.Printf("page %v of %v (%v sessions)\n",
		result.Pagination["current_page"], result.Pagination["total_pages"], result.Pagination["total_sessions"])
}

func sessionAnalytics(args []string) {
	fs := flag.NewFlagSet("analytics", flag.ExitOnError)
	groupBy := fs.String("group-by", "day", "bucket size: hour, day, week, month")
	fs.Parse(args)

	req, _ := http.NewRequest("GET", getAPIURL()+"/truck-sessions/analytics?group_by="+*groupBy, nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		var result map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&result)
		fmt.Printf("✗ Analytics failed: %v\n", result)
		return
	}

	var report map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&report)
	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))
}

// Fleet commands
func listTrucks(args []string) {
	fs := flag.NewFlagSet("trucks", flag.ExitOnError)
	status := fs.String("status", "", "filter by status")
	fs.Parse(args)

	url := getAPIURL() + "/trucks"
	if *status != "" {
		url += "?status=" + *status
	}
	req, _ := http.NewRequest("GET", url, nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result struct {
		Trucks []map[string]interface{} `json:"trucks"`
	}
	json.NewDecoder(resp.Body).Decode(&result)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNUMBER\tPLATE\tSTATUS")
	for _, t := range result.Trucks {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\n", t["id"], t["truck_number"], t["license_plate"], t["status"])
	}
	w.Flush()
}

func listEmployees(args []string) {
	fs := flag.NewFlagSet("employees", flag.ExitOnError)
	status := fs.String("status", "", "filter by status")
	fs.Parse(args)

	url := getAPIURL() + "/employees"
	if *status != "" {
		url += "?status=" + *status
	}
	req, _ := http.NewRequest("GET", url, nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result struct {
		Employees []map[string]interface{} `json:"employees"`
	}
	json.NewDecoder(resp.Body).Decode(&result)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNO\tNAME\tSTATUS")
	for _, e := range result.Employees {
		fmt.Fprintf(w, "%v\t%v\t%v %v\t%v\n", e["id"], e["employee_no"], e["first_name"], e["last_name"], e["status"])
	}
	w.Flush()
}

// Helper functions
func getAPIURL() string {
	if url := os.Getenv("FLEETOPS_API"); url != "" {
		return url
	}
	return "http://localhost:8080/api"
}

func tokenFile() string {
	home, _ := os.UserHomeDir()
	return home + "/.fleetops/token"
}

func saveToken(token string) error {
	home, _ := os.UserHomeDir()
	os.MkdirAll(home+"/.fleetops", 0700)
	return os.WriteFile(tokenFile(), []byte(token), 0600)
}

func loadToken() string {
	data, _ := os.ReadFile(tokenFile())
	return string(data)
}

func addAuthHeader(req *http.Request) {
	token := loadToken()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func printUsage() {
	fmt.Print(`FleetOps CLI

Usage:
  fleetops <command> [options]

Commands:
  auth       Authentication (register, login, logout, who)
  session    Work sessions (start, end, active, history, analytics)
  trucks     List trucks
  employees  List employees
  help       Show this help message

Environment Variables:
  FLEETOPS_API    API endpoint (default: http://localhost:8080/api)

Examples:
  fleetops auth register -company "Acme Hauling" -email admin@acme.com -username admin -password secret123
  fleetops auth login -username admin -password secret123
  fleetops session start -truck 3 -employee 12
  fleetops session end -notes "shift done" 45
  fleetops session active
`)
}
