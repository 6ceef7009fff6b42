package trackmeta

// DefaultArtist is credited when the stream title carries no artist.
const DefaultArtist = "Greatest Hits Non-Stop"

// Classic is a well known track the station plays. The catalog doubles as the
// fallback rotation and as the set of artists used to spot transposed
// "Title - Artist" stream titles.
type Classic struct {
	Candidate
	Album string
}

// Classics is the fallback rotation, in rotation order.
var Classics = []Classic{
	{Candidate{Title: "Don't Stop Believin'", Artist: "Journey"}, "Escape"},
	{Candidate{Title: "Bohemian Rhapsody", Artist: "Queen"}, "A Night at the Opera"},
	{Candidate{Title: "Sweet Child O' Mine", Artist: "Guns N' Roses"}, "Appetite for Destruction"},
	{Candidate{Title: "Hotel California", Artist: "Eagles"}, "Hotel California"},
	{Candidate{Title: "Stairway to Heaven", Artist: "Led Zeppelin"}, "Led Zeppelin IV"},
	{Candidate{Title: "Billie Jean", Artist: "Michael Jackson"}, "Thriller"},
	{Candidate{Title: "Dancing Queen", Artist: "ABBA"}, "Arrival"},
	{Candidate{Title: "Like a Rolling Stone", Artist: "Bob Dylan"}, "Highway 61 Revisited"},
	{Candidate{Title: "Imagine", Artist: "John Lennon"}, "Imagine"},
	{Candidate{Title: "Good Vibrations", Artist: "The Beach Boys"}, "Pet Sounds"},
	{Candidate{Title: "Purple Haze", Artist: "Jimi Hendrix"}, "Are You Experienced"},
	{Candidate{Title: "Hey Jude", Artist: "The Beatles"}, "1967-1970"},
	{Candidate{Title: "Born to Run", Artist: "Bruce Springsteen"}, "Born to Run"},
	{Candidate{Title: "Another Brick in the Wall", Artist: "Pink Floyd"}, "The Wall"},
	{Candidate{Title: "Sweet Dreams", Artist: "Eurythmics"}, "Sweet Dreams"},
	{Candidate{Title: "Livin' on a Prayer", Artist: "Bon Jovi"}, "Slippery When Wet"},
	{Candidate{Title: "Every Breath You Take", Artist: "The Police"}, "Synchronicity"},
	{Candidate{Title: "Tainted Love", Artist: "Soft Cell"}, "Non-Stop Erotic Cabaret"},
	{Candidate{Title: "Blue Monday", Artist: "New Order"}, "Power, Corruption & Lies"},
	{Candidate{Title: "Take On Me", Artist: "a-ha"}, "Hunting High and Low"},
}

// ClassicArtists lists the artist of every classic.
func ClassicArtists() []string {
	names := make([]string, 0, len(Classics))
	for _, c := range Classics {
		names = append(names, c.Artist)
	}
	return names
}
