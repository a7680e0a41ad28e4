package main

import (
	_ "github.com/quillpress/quill/src/hmns3"
	_ "github.com/quillpress/quill/src/migration"
	"github.com/quillpress/quill/src/website"
)

func main() {
	website.WebsiteCommand.Execute()
}
