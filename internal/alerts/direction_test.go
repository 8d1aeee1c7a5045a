package alerts

import "testing"

func TestDirection(t *testing.T) {
	tests := []struct {
		heading string
		want    string // "" means no direction
	}{
		{"Downtown 1 trains are delayed", "downtown"},
		{"UPTOWN A trains skip 50 St", "uptown"},
		{"Some uptown and downtown trains are delayed", "uptown"},
		{"downtown", "downtown"},
		{"Manhattan bound trains run local", "Manhattan bound"},
		{"Service to the Bronx bound trains is suspended", "Bronx bound"},
		{"Trains run in the Bronx-bound direction", "Bronx-bound"},
		{"a Queens-bound train had mechanical problems", "Queens-bound"},
		{"An Brooklyn bound train is delayed", "Brooklyn bound"},
		{"Coney Island-bound D trains skip Bay 50 St", "Coney Island-bound"},
		{"northbound 6 trains are delayed", "northbound"},
		{"Queens-bound trains, uptown platform closed", "uptown"},
		{"Elevator outage at 59 St", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.heading, func(t *testing.T) {
			got := Direction(tt.heading)
			if tt.want == "" {
				if got != nil {
					t.Errorf("expected no direction, got %q", *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("expected %q, got nil", tt.want)
			}
			if *got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, *got)
			}
		})
	}
}
