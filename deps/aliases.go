package deps

// distAliases maps import names to their published distribution names when
// the two differ. The manifest and compiler hints need the distribution
// name; the source text only carries the import name.
var distAliases = map[string]string{
	"PIL":         "pillow",
	"cv2":         "opencv-python",
	"yaml":        "PyYAML",
	"sklearn":     "scikit-learn",
	"bs4":         "beautifulsoup4",
	"dateutil":    "python-dateutil",
	"dotenv":      "python-dotenv",
	"Crypto":      "pycryptodome",
	"OpenSSL":     "pyOpenSSL",
	"serial":      "pyserial",
	"usb":         "pyusb",
	"wx":          "wxPython",
	"git":         "GitPython",
	"magic":       "python-magic",
	"jose":        "python-jose",
	"slugify":     "python-slugify",
	"docx":        "python-docx",
	"pptx":        "python-pptx",
	"fitz":        "PyMuPDF",
	"Levenshtein": "python-Levenshtein",
	"attr":        "attrs",
	"cairo":       "pycairo",
	"gi":          "PyGObject",
	"win32api":    "pywin32",
	"win32con":    "pywin32",
	"win32gui":    "pywin32",
}

// DistributionName maps an import's root segment to its distribution name,
// falling back to the import name itself.
func DistributionName(module string) string {
	root := rootSegment(module)
	if dist, ok := distAliases[root]; ok {
		return dist
	}
	return root
}
